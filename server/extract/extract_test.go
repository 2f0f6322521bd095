package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetsURLs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Target
	}{
		{
			name: "bilibili video url",
			text: "look https://www.bilibili.com/video/BV1xx4y1x7Nq?p=1 nice",
			expected: []Target{
				{Kind: KindBilibili, URL: "https://www.bilibili.com/video/BV1xx4y1x7Nq?p=1"},
				{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			},
		},
		{
			name: "bilibili short link",
			text: "https://b23.tv/abc123",
			expected: []Target{
				{Kind: KindBilibili, URL: "https://b23.tv/abc123"},
			},
		},
		{
			name: "xiaohongshu explore url",
			text: "https://www.xiaohongshu.com/explore/64f1a2b3c4d5e6",
			expected: []Target{
				{Kind: KindXiaohongshu, URL: "https://www.xiaohongshu.com/explore/64f1a2b3c4d5e6"},
			},
		},
		{
			name: "xiaohongshu discovery item url",
			text: "https://www.xiaohongshu.com/discovery/item/64f1a2b3c4d5e6?source=share",
			expected: []Target{
				{Kind: KindXiaohongshu, URL: "https://www.xiaohongshu.com/discovery/item/64f1a2b3c4d5e6?source=share"},
			},
		},
		{
			name: "xiaohongshu short link",
			text: "http://xhslink.com/a/BcDeF9",
			expected: []Target{
				{Kind: KindXiaohongshu, URL: "http://xhslink.com/a/BcDeF9"},
			},
		},
		{
			name: "douyin short link",
			text: "https://v.douyin.com/iRNBho6u/",
			expected: []Target{
				{Kind: KindDouyin, URL: "https://v.douyin.com/iRNBho6u/"},
			},
		},
		{
			name: "douyin video url",
			text: "https://www.douyin.com/video/7123456789012345678",
			expected: []Target{
				{Kind: KindDouyin, URL: "https://www.douyin.com/video/7123456789012345678"},
			},
		},
		{
			name: "iesdouyin share url",
			text: "https://www.iesdouyin.com/share/video/7123456789012345678/?region=CN",
			expected: []Target{
				{Kind: KindDouyin, URL: "https://www.iesdouyin.com/share/video/7123456789012345678/?region=CN"},
			},
		},
		{
			name: "trailing prose punctuation stripped",
			text: "(see https://www.bilibili.com/video/BV1xx4y1x7Nq).",
			expected: []Target{
				{Kind: KindBilibili, URL: "https://www.bilibili.com/video/BV1xx4y1x7Nq"},
				{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			},
		},
		{
			name: "cjk punctuation ends the url",
			text: "看这个https://www.bilibili.com/video/BV1xx4y1x7Nq，很好看",
			expected: []Target{
				{Kind: KindBilibili, URL: "https://www.bilibili.com/video/BV1xx4y1x7Nq"},
				{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			},
		},
		{
			name: "html entities decoded before matching",
			text: "https://www.bilibili.com/video/BV1xx4y1x7Nq?p=1&amp;t=30",
			expected: []Target{
				{Kind: KindBilibili, URL: "https://www.bilibili.com/video/BV1xx4y1x7Nq?p=1&t=30"},
				{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			},
		},
		{
			name:     "no targets in plain prose",
			text:     "just a regular message with nothing in it",
			expected: []Target{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Targets(tt.text))
		})
	}
}

func TestTargetsBareIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Target
	}{
		{
			name: "bv and av in one message",
			text: "check out BV1xx4y1x7Nq and av123456",
			expected: []Target{
				{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
				{Kind: KindBilibiliID, IDType: "av", ID: "123456"},
			},
		},
		{
			name: "lowercase bv prefix normalized",
			text: "bv1xx4y1x7Nq",
			expected: []Target{
				{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			},
		},
		{
			name: "uppercase av prefix keeps digits only",
			text: "AV98765",
			expected: []Target{
				{Kind: KindBilibiliID, IDType: "av", ID: "98765"},
			},
		},
		{
			name:     "av needs a word boundary",
			text:     "my fav123 thing",
			expected: []Target{},
		},
		{
			name:     "bv body must be exactly ten characters",
			text:     "BV1xx4y1x7N and BV1xx4y1x7Nqq",
			expected: []Target{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Targets(tt.text))
		})
	}
}

func TestTargetsOrderedByPosition(t *testing.T) {
	text := "first https://www.xiaohongshu.com/explore/abc123 then av555 then https://b23.tv/xyz789"
	got := Targets(text)

	assert.Equal(t, []Target{
		{Kind: KindXiaohongshu, URL: "https://www.xiaohongshu.com/explore/abc123"},
		{Kind: KindBilibiliID, IDType: "av", ID: "555"},
		{Kind: KindBilibili, URL: "https://b23.tv/xyz789"},
	}, got)
}

func TestDedupe(t *testing.T) {
	t.Run("repeated url collapses to first occurrence", func(t *testing.T) {
		in := []Target{
			{Kind: KindBilibili, URL: "https://b23.tv/abc"},
			{Kind: KindDouyin, URL: "https://v.douyin.com/xyz/"},
			{Kind: KindBilibili, URL: "https://b23.tv/abc"},
		}
		assert.Equal(t, []Target{
			{Kind: KindBilibili, URL: "https://b23.tv/abc"},
			{Kind: KindDouyin, URL: "https://v.douyin.com/xyz/"},
		}, Dedupe(in))
	})

	t.Run("short codes are case sensitive", func(t *testing.T) {
		in := []Target{
			{Kind: KindBilibili, URL: "https://b23.tv/abc"},
			{Kind: KindBilibili, URL: "https://b23.tv/ABC"},
		}
		assert.Len(t, Dedupe(in), 2)
	})

	t.Run("repeated identifier collapses", func(t *testing.T) {
		in := []Target{
			{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			{Kind: KindBilibiliID, IDType: "av", ID: "123456"},
		}
		assert.Equal(t, []Target{
			{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
			{Kind: KindBilibiliID, IDType: "av", ID: "123456"},
		}, Dedupe(in))
	})

	t.Run("url and identifier for the same video both survive", func(t *testing.T) {
		in := []Target{
			{Kind: KindBilibili, URL: "https://www.bilibili.com/video/BV1xx4y1x7Nq"},
			{Kind: KindBilibiliID, IDType: "bv", ID: "BV1xx4y1x7Nq"},
		}
		assert.Len(t, Dedupe(in), 2)
	})

	t.Run("batch truncated to the cap", func(t *testing.T) {
		var in []Target
		for i := 0; i < 9; i++ {
			in = append(in, Target{Kind: KindBilibili, URL: fmt.Sprintf("https://b23.tv/v%d", i)})
		}
		got := Dedupe(in)
		assert.Len(t, got, MaxTargets)
		assert.Equal(t, "https://b23.tv/v0", got[0].URL)
		assert.Equal(t, "https://b23.tv/v4", got[4].URL)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Dedupe(nil))
	})
}
