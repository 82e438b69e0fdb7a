package youtube

import "regexp"

// ChannelRefKind says which lookup a parsed channel URL requires.
type ChannelRefKind int

const (
	ChannelRefID ChannelRefKind = iota
	ChannelRefHandle
	ChannelRefCustom
	ChannelRefUsername
)

var channelPatterns = []struct {
	re   *regexp.Regexp
	kind ChannelRefKind
}{
	{regexp.MustCompile(`youtube\.com/channel/([A-Za-z0-9_-]+)`), ChannelRefID},
	{regexp.MustCompile(`youtube\.com/@([A-Za-z0-9_.-]+)`), ChannelRefHandle},
	{regexp.MustCompile(`youtube\.com/c/([A-Za-z0-9_-]+)`), ChannelRefCustom},
	{regexp.MustCompile(`youtube\.com/user/([A-Za-z0-9_-]+)`), ChannelRefUsername},
}

var videoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

// ParseChannelURL extracts a channel reference from any supported channel URL
// shape. Returns the kind, the extracted value, and whether parsing succeeded.
func ParseChannelURL(rawURL string) (ChannelRefKind, string, bool) {
	for _, p := range channelPatterns {
		if m := p.re.FindStringSubmatch(rawURL); m != nil {
			return p.kind, m[1], true
		}
	}
	return 0, "", false
}

// ParseVideoURL extracts the 11-character video ID from watch, short-link,
// embed, and shorts URLs.
func ParseVideoURL(rawURL string) (string, bool) {
	for _, re := range videoPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}
