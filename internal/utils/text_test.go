package utils

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestIsReasoningModel(t *testing.T) {
	markers := []string{"r1"}

	assert.True(t, IsReasoningModel("deepseek-r1", markers))
	assert.True(t, IsReasoningModel("neuralmagic/DeepSeek-R1-Distill-Llama-70B-FP8-dynamic", markers))
	assert.False(t, IsReasoningModel("gpt-4o-mini", markers))
	assert.False(t, IsReasoningModel("deepseek-r1", nil))
	assert.False(t, IsReasoningModel("anything", []string{"", "  "}))
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"with thinking block", "<think>pondering</think>\n\nHello!", "Hello!"},
		{"multiple delimiters keep last segment", "a</think>b</think> c ", "c"},
		{"no delimiter", "  plain answer\n", "plain answer"},
		{"empty answer", "<think>only thoughts</think>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.in))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"r1", "qwq"}, SplitList(" r1, ,qwq,"))
	assert.Nil(t, SplitList(""))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "WARN")
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, log.InfoLevel, NewLogger(&buf, "nonsense").GetLevel())
	assert.Equal(t, log.DebugLevel, NewLogger(&buf, "debug").GetLevel())
}
