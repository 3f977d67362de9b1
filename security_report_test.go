package otpAuth

import "testing"

func TestSecurityReportReflectsPosture(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.ValidationMode = ModeStrict
		cfg.Token.EnforceRevocation = true
		cfg.OTP.DisposablePolicy = DisposableReject
		cfg.RateLimit.VerifyIPLimit = 10
	})

	report := engine.SecurityReport()
	if report.ProductionMode {
		t.Fatal("development engine must not report ProductionMode")
	}
	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("expected hs256 signing algorithm in report, got %s", report.SigningAlgorithm)
	}
	if !report.StrictMode || report.ValidationMode != ModeStrict {
		t.Fatal("expected StrictMode=true in report")
	}
	if !report.RevocationEnforced || !report.DisposableRejected {
		t.Fatal("expected revocation and disposable rejection in report")
	}
	if !report.RequestLimitsActive || !report.VerifyThrottleActive {
		t.Fatal("expected request limits and verify throttle active in report")
	}
	if report.CodeDigits != 6 || report.MaxAttempts != 10 {
		t.Fatalf("unexpected OTP posture: digits=%d attempts=%d", report.CodeDigits, report.MaxAttempts)
	}
	if report.SecureCookies {
		t.Fatal("development cookies are not secure")
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var engine *Engine
	if got := engine.SecurityReport(); got != (SecurityReport{}) {
		t.Fatalf("expected zero report, got %+v", got)
	}
}
