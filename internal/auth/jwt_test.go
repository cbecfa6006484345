package auth

import (
	"testing"
	"time"

	"balancestudio/config"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "balancestudio-test",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateAccessToken(cfg, 42, "user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Email != "user@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAccessTokenWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateAccessToken(cfg, 42, "user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	other := testJWTConfig()
	other.AccessSecret = "different"
	if _, err := ParseAccessToken(other, token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateRefreshToken(cfg, 7)
	if err != nil {
		t.Fatal(err)
	}
	userID, err := ParseRefreshToken(cfg, token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != 7 {
		t.Errorf("userID = %d, want 7", userID)
	}
	// A refresh token must not pass as an access token.
	if _, err := ParseAccessToken(cfg, token); err != ErrInvalidToken {
		t.Errorf("access parse of refresh token: err = %v, want ErrInvalidToken", err)
	}
}
