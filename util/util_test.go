package util

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDebugEnabled_False(t *testing.T) {
	res := DebugEnabled()
	assert.False(t, res, "debug should be false")
}

func TestIsDebugEnabled_True(t *testing.T) {

	err := os.Setenv("PASKOOCHEH_DEBUG", "true")
	if err != nil {
		t.Errorf("can't set env variable")
	}
	defer func() { _ = os.Unsetenv("PASKOOCHEH_DEBUG") }()

	res := DebugEnabled()
	assert.True(t, res, "debug should be true")
}

func TestIsDebugEnabled_Garbage(t *testing.T) {

	err := os.Setenv("PASKOOCHEH_DEBUG", "not-a-bool")
	if err != nil {
		t.Errorf("can't set env variable")
	}
	defer func() { _ = os.Unsetenv("PASKOOCHEH_DEBUG") }()

	res := DebugEnabled()
	assert.False(t, res, "unparseable value should read as false")
}
