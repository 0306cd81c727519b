package services

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptcha(t *testing.T) {
	svc := NewCaptchaService()
	for i := 0; i < 50; i++ {
		question, answer := svc.GenerateMathProblem()
		parts := strings.Fields(question)
		if !assert.Len(t, parts, 3) {
			return
		}
		a, _ := strconv.Atoi(parts[0])
		b, _ := strconv.Atoi(parts[2])
		switch parts[1] {
		case "+":
			assert.Equal(t, a+b, answer)
		case "-":
			assert.Equal(t, a-b, answer)
			assert.GreaterOrEqual(t, answer, 0)
		default:
			t.Fatalf("unexpected operator %q", parts[1])
		}
		assert.True(t, svc.Verify(" "+strconv.Itoa(answer)+" ", answer))
		assert.False(t, svc.Verify("x", answer))
	}
}
