// Package main provides a CI-friendly smoke test for the traq auth API.
//
// It validates, against a running server:
//   - login with the seeded admin returns a bearer token
//   - /auth/me reflects the authenticated principal
//   - /auth/users lists the directory for an admin
//   - /auth/verify accepts the fresh token and rejects a mangled one
//   - a non-admin login is refused the directory with 403
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		adminUser = flag.String("admin", "admin@example.com", "Admin username")
		adminPass = flag.String("admin-pass", "Admin123!", "Admin password")
		plainUser = flag.String("user", "user@example.com", "Non-admin username")
		plainPass = flag.String("user-pass", "User123!", "Non-admin password")
		timeout   = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose   = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if _, err := url.ParseRequestURI(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &client{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}

	adminTok := c.mustLogin(*adminUser, *adminPass, "admin")
	c.mustMe(adminTok, *adminUser)
	c.mustListUsers(adminTok)
	c.mustVerify(adminTok, true)
	c.mustVerify(adminTok+"x", false)

	userTok := c.mustLogin(*plainUser, *plainPass, "user")
	c.mustForbiddenUsers(userTok)

	fmt.Println("auth smoke: OK")
}

type client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

func (c *client) do(method, path, bearer string, body any, out any) int {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("%s %s: marshal: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read body: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) mustLogin(username, password, wantRole string) string {
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		Role        string `json:"role"`
	}
	status := c.do(http.MethodPost, "/auth/login", "",
		map[string]string{"username": username, "password": password}, &resp)
	if status != http.StatusOK {
		fatalf("login %s: status %d", username, status)
	}
	if resp.TokenType != "Bearer" || resp.AccessToken == "" || resp.ExpiresIn <= 0 {
		fatalf("login %s: malformed token response %+v", username, resp)
	}
	if resp.Role != wantRole {
		fatalf("login %s: role %q, want %q", username, resp.Role, wantRole)
	}
	return resp.AccessToken
}

func (c *client) mustMe(token, wantEmail string) {
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	status := c.do(http.MethodGet, "/auth/me", token, nil, &me)
	if status != http.StatusOK {
		fatalf("me: status %d", status)
	}
	if !strings.EqualFold(me.Email, wantEmail) {
		fatalf("me: email %q, want %q", me.Email, wantEmail)
	}
}

func (c *client) mustListUsers(token string) {
	var resp struct {
		Users []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"users"`
	}
	status := c.do(http.MethodGet, "/auth/users", token, nil, &resp)
	if status != http.StatusOK {
		fatalf("users: status %d", status)
	}
	if len(resp.Users) == 0 {
		fatalf("users: empty directory")
	}
}

func (c *client) mustForbiddenUsers(token string) {
	status := c.do(http.MethodGet, "/auth/users", token, nil, nil)
	if status != http.StatusForbidden {
		fatalf("users as non-admin: status %d, want 403", status)
	}
}

func (c *client) mustVerify(token string, wantValid bool) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	status := c.do(http.MethodPost, "/auth/verify", "", map[string]string{"token": token}, &resp)
	if wantValid {
		if status != http.StatusOK || !resp.Valid {
			fatalf("verify: status %d valid %v, want 200 valid", status, resp.Valid)
		}
		return
	}
	if status != http.StatusUnauthorized || resp.Valid {
		fatalf("verify mangled: status %d valid %v, want 401 invalid", status, resp.Valid)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "auth smoke: "+format+"\n", args...)
	os.Exit(1)
}
