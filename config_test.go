package authflow

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Cookies.Secret = append([]byte(nil), testCookieSecret...)
	cfg.Cipher.Key = append([]byte(nil), testCipherKey...)
	cfg.Cipher.Nonce = append([]byte(nil), testCipherNonce...)
	return cfg
}

func TestDefaultConfigValidatesWithKeyMaterial(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with key material must validate: %v", err)
	}
}

func TestConfigValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"digits low", func(c *Config) { c.Codes.Digits = 3 }},
		{"digits high", func(c *Config) { c.Codes.Digits = 11 }},
		{"code ttl", func(c *Config) { c.Codes.TTL = 0 }},
		{"delivery policy", func(c *Config) { c.Codes.DeliveryPolicy = DeliveryPolicy(9) }},
		{"cooldown", func(c *Config) { c.Lockout.Cooldown = 0 }},
		{"flow token ttl", func(c *Config) { c.FlowTokens.TTL = -time.Second }},
		{"cookie secret", func(c *Config) { c.Cookies.Secret = []byte("short") }},
		{"cookie ttl", func(c *Config) { c.Cookies.TTL = 0 }},
		{"pending ttl", func(c *Config) { c.Cookies.PendingTTL = 0 }},
		{"session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"cipher key", func(c *Config) { c.Cipher.Key = []byte("short") }},
		{"cipher nonce", func(c *Config) { c.Cipher.Nonce = []byte("short") }},
		{"recovery count low", func(c *Config) { c.Recovery.CodeCount = 0 }},
		{"recovery count high", func(c *Config) { c.Recovery.CodeCount = 33 }},
		{"recovery length odd", func(c *Config) { c.Recovery.CodeLength = 9 }},
		{"recovery length low", func(c *Config) { c.Recovery.CodeLength = 6 }},
		{"recovery length high", func(c *Config) { c.Recovery.CodeLength = 22 }},
		{"enumeration delay", func(c *Config) { c.Security.EnumerationSafeDelay = 3 * time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigIsolatesKeyMaterial(t *testing.T) {
	cfg := validTestConfig()
	cfg.Cookies.Names = map[string]string{"signup": "registration"}

	cloned := cloneConfig(cfg)

	cfg.Cookies.Secret[0] ^= 0xFF
	cfg.Cipher.Key[0] ^= 0xFF
	cfg.Cipher.Nonce[0] ^= 0xFF
	cfg.Cookies.Names["signup"] = "mutated"

	if cloned.Cookies.Secret[0] == cfg.Cookies.Secret[0] {
		t.Fatal("cookie secret aliased after clone")
	}
	if cloned.Cipher.Key[0] == cfg.Cipher.Key[0] {
		t.Fatal("cipher key aliased after clone")
	}
	if cloned.Cipher.Nonce[0] == cfg.Cipher.Nonce[0] {
		t.Fatal("cipher nonce aliased after clone")
	}
	if cloned.Cookies.Names["signup"] != "registration" {
		t.Fatal("cookie name map aliased after clone")
	}
}
