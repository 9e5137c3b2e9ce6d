package forms

import (
	"errors"
	"strings"
	"testing"
)

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type signupForm struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

func TestValidateOK(t *testing.T) {
	err := Validate(loginForm{Email: "admin@teranga.app", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestValidateCollectsFieldErrors(t *testing.T) {
	err := Validate(loginForm{Email: "not-an-email", Password: "short"})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if _, ok := ferr.Fields["Email"]; !ok {
		t.Fatalf("missing Email error: %+v", ferr.Fields)
	}
	if _, ok := ferr.Fields["Password"]; !ok {
		t.Fatalf("missing Password error: %+v", ferr.Fields)
	}
	if !strings.Contains(ferr.Error(), "Email") {
		t.Fatalf("message does not name the field: %s", ferr.Error())
	}
}

func TestValidatePasswordConfirmation(t *testing.T) {
	err := Validate(signupForm{
		Email:           "admin@teranga.app",
		Password:        "s3cret-pass",
		ConfirmPassword: "different",
	})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if msg := ferr.Fields["ConfirmPassword"]; !strings.Contains(msg, "Password") {
		t.Fatalf("confirmation message should reference Password: %q", msg)
	}
}
