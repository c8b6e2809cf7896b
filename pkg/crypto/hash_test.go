package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretsEqual(t *testing.T) {
	assert.True(t, SecretsEqual("s3cret", "s3cret"))
	assert.False(t, SecretsEqual("s3cret", "s3cret2"))
	assert.False(t, SecretsEqual("", "s3cret"))
}
