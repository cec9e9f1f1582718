package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIsValidPrincipalID(t *testing.T) {
	valid := []string{
		"user1",
		"a",
		"550e8400-e29b-41d4-a716-446655440000",
		"user_with_underscores",
		strings.Repeat("a", 64),
	}
	for _, id := range valid {
		if !IsValidPrincipalID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("a", 65),
		"user one",
		"user@example.com",
		"user\x00",
	}
	for _, id := range invalid {
		if IsValidPrincipalID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 100); got != "hello" {
		t.Errorf("expected trimmed string, got %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Errorf("expected truncated string, got %q", got)
	}
	if got := SanitizeString("a\x00b", 100); got != "ab" {
		t.Errorf("expected null bytes removed, got %q", got)
	}
}

func TestValidateCombinators(t *testing.T) {
	errs := Validate(
		Required("principalId", ""),
		ValidPrincipal("principalId", "not valid!"),
		MaxLength("userAgent", strings.Repeat("x", 600), 512),
	)
	if len(errs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d: %v", len(errs), errs)
	}

	ok := Validate(
		Required("principalId", "user1"),
		ValidPrincipal("principalId", "user1"),
		MaxLength("userAgent", "short", 512),
	)
	if len(ok) != 0 {
		t.Errorf("expected no errors, got %v", ok)
	}
}

func TestPrincipalParamMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/principals/:id", PrincipalParamMiddleware(), func(c *gin.Context) {
		c.String(200, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/principals/user1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("valid id: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/principals/"+strings.Repeat("a", 65), nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid id: status = %d, want 400", w.Code)
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestSizeMiddleware(16))
	router.POST("/test", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too_large"})
			return
		}
		c.String(200, "ok")
	})

	big := strings.NewReader(`{"data":"` + strings.Repeat("x", 100) + `"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/test", big))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: status = %d, want 413", w.Code)
	}
}
