package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "JWT_SECRET", "test-secret")
	setEnv(t, "PAYSTACK_SECRET_KEY", "sk_test_abc")
	setEnv(t, "PORT", "9090")
	setEnv(t, "REQUEST_EXPIRY_WINDOW", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ProviderPaystack, cfg.GatewayProvider)
	assert.Equal(t, DefaultPaystackBaseURL, cfg.PaystackBaseURL)
	assert.Equal(t, 10*time.Minute, cfg.RequestExpiryWindow)
	assert.Equal(t, DefaultCompletionWindow, cfg.CompletionWindow)
	assert.Equal(t, DefaultPlatformFeePercent, cfg.PlatformFeePercent)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	setEnv(t, "JWT_SECRET", "")
	setEnv(t, "PAYSTACK_SECRET_KEY", "sk_test_abc")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "paystack without key",
			config: Config{
				JWTSecret:       "s",
				GatewayProvider: ProviderPaystack,
			},
			wantErr: "PAYSTACK_SECRET_KEY",
		},
		{
			name: "stripe without key",
			config: Config{
				JWTSecret:       "s",
				GatewayProvider: ProviderStripe,
			},
			wantErr: "STRIPE_SECRET_KEY",
		},
		{
			name: "unknown provider",
			config: Config{
				JWTSecret:       "s",
				GatewayProvider: "flutterwave",
			},
			wantErr: "GATEWAY_PROVIDER",
		},
		{
			name: "fee over 100",
			config: Config{
				JWTSecret:          "s",
				GatewayProvider:    ProviderPaystack,
				PaystackSecretKey:  "sk",
				PlatformFeePercent: 101,
			},
			wantErr: "PLATFORM_FEE_PERCENT",
		},
		{
			name: "valid stripe",
			config: Config{
				JWTSecret:       "s",
				GatewayProvider: ProviderStripe,
				StripeSecretKey: "sk_test",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	setEnv(t, "JWT_SECRET", "test-secret")
	setEnv(t, "PAYSTACK_SECRET_KEY", "sk_test_abc")
	setEnv(t, "SWEEP_INTERVAL", "often")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, (&Config{Env: "development"}).IsDevelopment())
	assert.False(t, (&Config{Env: "production"}).IsDevelopment())
	assert.True(t, (&Config{Env: "production"}).IsProduction())
}
