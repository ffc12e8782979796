package marketplace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildSession(t *testing.T) {
	cookie := "v_udt=abc; access_token_web=tok-123; locale=fr"
	sess, err := BuildSession(cookie, "")
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	if sess.AuthToken != "tok-123" {
		t.Errorf("AuthToken = %q; want tok-123", sess.AuthToken)
	}
	if sess.CookieHeader != cookie {
		t.Errorf("CookieHeader = %q; want full cookie string", sess.CookieHeader)
	}
	if sess.UserAgent == "" {
		t.Errorf("expected a default user agent")
	}
}

func TestBuildSessionMissingCredential(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"locale=fr; v_udt=abc",
		"access_token_web=",
		"access_token_web",
	}
	for _, cookie := range cases {
		if _, err := BuildSession(cookie, ""); !errors.Is(err, ErrMissingCredential) {
			t.Errorf("BuildSession(%q) err = %v; want ErrMissingCredential", cookie, err)
		}
	}
}

func TestBuildSessionKeepsUserAgent(t *testing.T) {
	sess, err := BuildSession("access_token_web=tok", "custom-agent/1.0")
	if err != nil {
		t.Fatalf("BuildSession: %v", err)
	}
	if sess.UserAgent != "custom-agent/1.0" {
		t.Errorf("UserAgent = %q; want custom-agent/1.0", sess.UserAgent)
	}
}

func TestCredentialSourceReadsCookieFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie")
	if err := os.WriteFile(path, []byte("access_token_web=from-file\n"), 0o600); err != nil {
		t.Fatalf("write cookie file: %v", err)
	}
	src := CredentialSource{Cookie: "access_token_web=inline", CookieFile: path}
	sess, err := src.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.AuthToken != "from-file" {
		t.Errorf("AuthToken = %q; file must win over inline cookie", sess.AuthToken)
	}
}

func TestCredentialSourceMissingFile(t *testing.T) {
	src := CredentialSource{CookieFile: filepath.Join(t.TempDir(), "absent")}
	if _, err := src.Session(context.Background()); err == nil {
		t.Fatalf("expected error for missing cookie file")
	}
}
