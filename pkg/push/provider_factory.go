package push

import (
	"fmt"
	"strings"

	"chatlink-backend/pkg/env"
	"chatlink-backend/pkg/logger"

	"go.uber.org/zap"
)

// Values accepted in PUSH_PROVIDER
const (
	providerMock = "mock"
	providerFCM  = "fcm"
	providerAPNs = "apns"
)

// NewProvider builds the push provider named by PUSH_PROVIDER. The default
// is the mock provider so local stacks run without platform credentials;
// an unrecognized value fails startup rather than silently dropping pushes.
func NewProvider() (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(env.GetString("PUSH_PROVIDER", providerMock)))

	logger.Info("Configuring push provider", zap.String("provider", name))

	switch name {
	case providerFCM:
		return fcmFromEnv()
	case providerAPNs:
		return apnsFromEnv()
	case providerMock:
		return &MockProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown PUSH_PROVIDER %q (want fcm, apns or mock)", name)
	}
}

func fcmFromEnv() (Provider, error) {
	cfg := &FCMConfig{
		ProjectID:       env.GetString("FCM_PROJECT_ID", ""),
		CredentialsPath: env.GetString("FCM_CREDENTIALS_PATH", ""),
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("FCM_PROJECT_ID is required when PUSH_PROVIDER=fcm")
	}
	return NewFCMProvider(cfg)
}

// apnsFromEnv prefers token auth; a .p12 certificate is the legacy path
func apnsFromEnv() (Provider, error) {
	bundleID := env.GetString("APNS_BUNDLE_ID", "")
	if bundleID == "" {
		return nil, fmt.Errorf("APNS_BUNDLE_ID is required when PUSH_PROVIDER=apns")
	}
	production := env.GetBool("APNS_PRODUCTION", false)

	keyPath := env.GetString("APNS_KEY_PATH", "")
	keyID := env.GetString("APNS_KEY_ID", "")
	teamID := env.GetString("APNS_TEAM_ID", "")
	if keyPath != "" && keyID != "" && teamID != "" {
		return NewAPNsProvider(&APNsConfig{
			BundleID:   bundleID,
			KeyPath:    keyPath,
			KeyID:      keyID,
			TeamID:     teamID,
			Production: production,
		})
	}

	if certPath := env.GetString("APNS_CERT_PATH", ""); certPath != "" {
		return NewAPNsProvider(&APNsConfig{
			BundleID:            bundleID,
			CertificatePath:     certPath,
			CertificatePassword: env.GetStringFromFile("APNS_CERT_PASSWORD", ""),
			Production:          production,
		})
	}

	return nil, fmt.Errorf("APNs configuration needs APNS_KEY_PATH, APNS_KEY_ID and APNS_TEAM_ID, or APNS_CERT_PATH")
}
