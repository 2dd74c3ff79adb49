package voice

import (
	"crypto/md5"
	"encoding/binary"
)

// Pair is the voice assignment for one episode. Voice2 is empty for
// single-speaker episodes.
type Pair struct {
	Voice1 string
	Voice2 string
}

// Options tunes selection behavior.
type Options struct {
	// RandomizeSpeaker2 enables per-episode seeded selection of speaker
	// 2's voice. When false both speakers use language defaults.
	RandomizeSpeaker2 bool
}

// seed32 derives a 32-bit selection seed from the episode id, role and
// gender. The input string is plain NFC UTF-8 with no BOM; the first four
// MD5 bytes are read big-endian so any runtime reproduces the same index.
func seed32(episodeID, role, gender string) uint32 {
	sum := md5.Sum([]byte(episodeID + ":" + role + ":" + gender))
	return binary.BigEndian.Uint32(sum[:4])
}

// pick selects from list using the seed. Deterministic by construction.
func pick(list []string, seed uint32) string {
	return list[int(seed%uint32(len(list)))]
}

// SelectSingle returns the voice for a single-speaker episode: the
// language default for the speaker's gender.
func SelectSingle(language, gender string) Pair {
	return Pair{Voice1: DefaultVoice(language, gender)}
}

// SelectPair assigns the two voices for a multi-speaker episode.
//
// Speaker 1 always gets the language default for its gender, anchoring the
// podcast's recognizable host voice. Speaker 2 is chosen by seeded random
// from its gender's list so different episodes vary while any single
// episode always reproduces the same pair. A collision (possible only when
// both speakers share a gender) re-seeds with an ":alt" suffix and picks
// from the list minus the collided voice, so the pair is always distinct.
func SelectPair(episodeID, language, role2, gender1, gender2 string, opts Options) Pair {
	v1 := DefaultVoice(language, gender1)
	if !opts.RandomizeSpeaker2 {
		v2 := DefaultVoice(language, gender2)
		if v2 == v1 {
			v2 = reselect(episodeID, role2, gender2, v1)
		}
		return Pair{Voice1: v1, Voice2: v2}
	}

	v2 := pick(VoicesFor(gender2), seed32(episodeID, role2, gender2))
	if v2 == v1 {
		v2 = reselect(episodeID, role2, gender2, v1)
	}
	return Pair{Voice1: v1, Voice2: v2}
}

// reselect picks speaker 2's voice from its gender list excluding the
// collided voice, using the ":alt" re-seed.
func reselect(episodeID, role2, gender2, exclude string) string {
	list := VoicesFor(gender2)
	remaining := make([]string, 0, len(list)-1)
	for _, v := range list {
		if v != exclude {
			remaining = append(remaining, v)
		}
	}
	return pick(remaining, seed32(episodeID, role2, gender2+":alt"))
}
