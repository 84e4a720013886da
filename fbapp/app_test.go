package fbapp

import (
	"context"
	"testing"

	"sitaraServer/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppDisabled(t *testing.T) {
	_, err := NewApp(context.Background(), config.FirebaseConfig{})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(config.FirebaseConfig{ProjectID: "sitara"}))
	assert.Len(t, ClientOptions(config.FirebaseConfig{CredentialsFile: "/etc/sitara/sa.json"}), 1)
}
