// Package fbapp builds the Firebase clients shared by push and the
// Firestore mirror.
package fbapp

import (
	"context"
	"errors"
	"fmt"

	"sitaraServer/config"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

var ErrDisabled = errors.New("firebase not configured")

// ClientOptions returns the Google API options for cfg. Without a
// credentials file the SDK falls back to application default credentials.
func ClientOptions(cfg config.FirebaseConfig) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// NewApp initializes the Firebase app, or returns ErrDisabled.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}
