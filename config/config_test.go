package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/mpesa?parseTime=true")
	unsetEnv(t, "MPESA_GATEWAY")
	unsetEnv(t, "MPESA_BASE_URL")
	unsetEnv(t, "MPESA_CONSUMER_KEY")
	unsetEnv(t, "MPESA_CONSUMER_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Mpesa.Gateway != "daraja" {
		t.Fatalf("unexpected default gateway: %s", cfg.Mpesa.Gateway)
	}
	if cfg.Mpesa.BaseURL != "https://sandbox.safaricom.co.ke" {
		t.Fatalf("unexpected default base url: %s", cfg.Mpesa.BaseURL)
	}
	// credentials have no compiled-in defaults
	if cfg.Mpesa.ConsumerKey != "" || cfg.Mpesa.ConsumerSecret != "" {
		t.Fatal("credentials must be empty unless supplied by the environment")
	}
	if cfg.Mpesa.HTTPTimeout != 10*time.Second {
		t.Fatalf("unexpected default http timeout: %v", cfg.Mpesa.HTTPTimeout)
	}
	if cfg.Payments.PendingTimeout != 5*time.Minute {
		t.Fatalf("unexpected default pending timeout: %v", cfg.Payments.PendingTimeout)
	}
	if cfg.HTTP.Port != "8080" {
		t.Fatalf("unexpected default http port: %s", cfg.HTTP.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/mpesa?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "mpesa-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "MPESA_GATEWAY", "sandbox")
	setEnv(t, "MPESA_BASE_URL", "https://api.safaricom.co.ke")
	setEnv(t, "MPESA_CONSUMER_KEY", "test-key")
	setEnv(t, "MPESA_CONSUMER_SECRET", "test-secret")
	setEnv(t, "MPESA_SHORT_CODE", "174379")
	setEnv(t, "MPESA_PASSKEY", "test-passkey")
	setEnv(t, "MPESA_CALLBACK_BASE_URL", "https://payments.example.com")
	setEnv(t, "MPESA_HTTP_TIMEOUT_SECONDS", "25")
	setEnv(t, "PAYMENTS_PENDING_TIMEOUT_MINUTES", "11")
	setEnv(t, "PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", "13")
	setEnv(t, "PAYMENTS_JOB_BATCH_SIZE", "99")
	setEnv(t, "PAYMENTS_RECONCILE_INTERVAL_MINUTES", "3")
	setEnv(t, "PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "mpesa-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Mpesa.Gateway != "sandbox" {
		t.Fatalf("unexpected gateway: %s", cfg.Mpesa.Gateway)
	}
	if cfg.Mpesa.BaseURL != "https://api.safaricom.co.ke" {
		t.Fatalf("unexpected base url: %s", cfg.Mpesa.BaseURL)
	}
	if cfg.Mpesa.ConsumerKey != "test-key" || cfg.Mpesa.ConsumerSecret != "test-secret" {
		t.Fatal("unexpected mpesa credentials")
	}
	if cfg.Mpesa.ShortCode != "174379" || cfg.Mpesa.Passkey != "test-passkey" {
		t.Fatal("unexpected mpesa shortcode config")
	}
	if cfg.Mpesa.CallbackBaseURL != "https://payments.example.com" {
		t.Fatalf("unexpected callback base url: %s", cfg.Mpesa.CallbackBaseURL)
	}
	if cfg.Mpesa.HTTPTimeout != 25*time.Second {
		t.Fatalf("unexpected http timeout: %v", cfg.Mpesa.HTTPTimeout)
	}
	if cfg.Payments.PendingTimeout != 11*time.Minute {
		t.Fatalf("unexpected pending timeout: %v", cfg.Payments.PendingTimeout)
	}
	if cfg.Payments.ReconcileStaleAfter != 13*time.Minute {
		t.Fatalf("unexpected reconcile stale after: %v", cfg.Payments.ReconcileStaleAfter)
	}
	if cfg.Payments.JobBatchSize != 99 {
		t.Fatalf("unexpected job batch size: %d", cfg.Payments.JobBatchSize)
	}
	if cfg.Jobs.ReconcileInterval != 3*time.Minute {
		t.Fatalf("unexpected reconcile interval: %v", cfg.Jobs.ReconcileInterval)
	}
	if cfg.Jobs.ExpirePendingInterval != 7*time.Minute {
		t.Fatalf("unexpected expire interval: %v", cfg.Jobs.ExpirePendingInterval)
	}
}
