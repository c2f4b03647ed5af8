package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterestTokens(t *testing.T) {
	assert.Nil(t, InterestTokens("   "))
	assert.Equal(t, []string{"chess", "coding", "coffee"}, InterestTokens("Chess, Coding ,COFFEE, tango"))
	// empties count towards the first three
	assert.Equal(t, []string{"chess", "coffee"}, InterestTokens("chess,,coffee,tango"))
}

func TestScore(t *testing.T) {
	tokens := []string{"chess", "coding", "coffee"}

	assert.Equal(t, 3, Score("Coffee, chess clubs and live coding", tokens))
	assert.Equal(t, 1, Score("CHESS", tokens))
	assert.Equal(t, 0, Score("tango", tokens))
	assert.Equal(t, 0, Score("chess", nil))
}

func TestScoreTreatsPatternCharactersLiterally(t *testing.T) {
	tokens := InterestTokens("100%, o'neil, _")
	assert.Equal(t, []string{"100%", "o'neil", "_"}, tokens)

	assert.Equal(t, 0, Score("1000 things", tokens[:1]))
	assert.Equal(t, 1, Score("I give 100%", tokens[:1]))
	assert.Equal(t, 1, Score("reading o'neil", tokens[1:2]))
	assert.Equal(t, 0, Score("anything", tokens[2:]))
}
