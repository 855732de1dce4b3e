package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1440, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "ko-KR", opts.Locale)
	assert.Equal(t, "Asia/Seoul", opts.TimezoneID)
	assert.NotEmpty(t, opts.UserAgent)
}

func TestIsBlockedContent(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		blocked bool
	}{
		{
			name:    "abuse check page title",
			title:   "보안 확인이 필요합니다",
			blocked: true,
		},
		{
			name:    "abnormal search notice in body",
			content: "<p>비정상적인 검색이 감지되어 서비스 이용이 제한되었습니다.</p>",
			blocked: true,
		},
		{
			name:    "temporary restriction notice",
			content: "서비스 이용이 일시적으로 제한되었습니다.",
			blocked: true,
		},
		{
			name:    "captcha marker",
			content: `<div id="captcha_form">...</div>`,
			blocked: true,
		},
		{
			name:    "normal result page",
			title:   "무선 키보드 : 네이버 통합검색",
			content: "<div>파워링크 광고와 검색 결과</div>",
			blocked: false,
		},
		{
			name:    "empty page",
			blocked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlockedContent(tt.title, tt.content))
		})
	}
}
