package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicIDReplacesSeparators(t *testing.T) {
	require.Equal(t, "submission-12-face", buildPublicID("submission/12/face"))
	require.Contains(t, buildPublicID("///"), "evidence-")
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
