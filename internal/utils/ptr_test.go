package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringOrNil(t *testing.T) {
	assert.Nil(t, StringOrNil(""))
	assert.Nil(t, StringOrNil("  \t"))
	assert.Equal(t, Ptr("Lee"), StringOrNil("  Lee "))
}
