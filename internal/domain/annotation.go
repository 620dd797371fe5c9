package domain

import "strings"

// NoSongsDescription is written when no listens fall inside the activity window.
const NoSongsDescription = "🏃 Great run! No Spotify songs logged."

const descriptionHeader = "🏃 Great run!\n🎶 Songs listened to:\n"

// DedupeListens collapses repeated plays of the same (track, artist) pair,
// keeping the first occurrence. Input is expected in ascending played_at order.
// This is distinct from the store's played_at uniqueness: the same song played
// twice during one activity appears once in the annotation.
func DedupeListens(listens []Listen) []Listen {
	seen := make(map[string]struct{}, len(listens))
	unique := make([]Listen, 0, len(listens))
	for _, listen := range listens {
		key := listen.TrackName + "|" + listen.Artist
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, listen)
	}
	return unique
}

// FormatDescription renders the annotation text for a deduplicated listen list.
// The result is never empty.
func FormatDescription(listens []Listen) string {
	if len(listens) == 0 {
		return NoSongsDescription
	}

	var b strings.Builder
	b.WriteString(descriptionHeader)
	for _, listen := range listens {
		b.WriteString("- ")
		b.WriteString(listen.TrackName)
		b.WriteString(" – ")
		b.WriteString(listen.Artist)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
