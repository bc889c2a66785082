package conversations

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePair(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	low, high := NormalizePair(a, b)
	assert.Equal(t, a, low)
	assert.Equal(t, b, high)

	low, high = NormalizePair(b, a)
	assert.Equal(t, a, low)
	assert.Equal(t, b, high)

	low, high = NormalizePair(a, a)
	assert.Equal(t, a, low)
	assert.Equal(t, a, high)
}

func TestConversation_Members(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	low, high := NormalizePair(a, b)

	c := Conversation{ID: uuid.New(), MemberLow: low, MemberHigh: high}

	assert.True(t, c.HasMember(a))
	assert.True(t, c.HasMember(b))
	assert.False(t, c.HasMember(uuid.New()))

	assert.Equal(t, b, c.OtherMember(a))
	assert.Equal(t, a, c.OtherMember(b))
}
