package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"signed url loses its token",
			"https://cdn.example.com/u/1/photo.jpg?X-Expires=900&sig=abc",
			"https://cdn.example.com/u/1/photo.jpg",
		},
		{
			"plain url unchanged",
			"https://cdn.example.com/u/1/photo.jpg",
			"https://cdn.example.com/u/1/photo.jpg",
		},
		{
			"fragment stripped",
			"https://cdn.example.com/a.png#frag",
			"https://cdn.example.com/a.png",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BaseURL(tc.in))
		})
	}
}

func TestSameStoredObject(t *testing.T) {
	a := "https://cdn.example.com/u/1/photo.jpg?X-Expires=900"
	b := "https://cdn.example.com/u/1/photo.jpg?X-Expires=1800&sig=other"

	assert.True(t, SameStoredObject(a, b))
	assert.False(t, SameStoredObject(a, "https://cdn.example.com/u/1/other.jpg"))
	assert.False(t, SameStoredObject("", ""))
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusUploading.Terminal())
	assert.False(t, StatusPaused.Terminal())
}
