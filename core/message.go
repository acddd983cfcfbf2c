package core

import (
	"regexp"
	"strconv"
	"strings"
)

// ChallengePrefix starts every challenge message
const ChallengePrefix = "IPFS-AUTH"

var communityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8,64}$`)

// BuildChallengeMessage returns the exact string a client has to sign.
// None of the components may contain ':' (nonces are hex, community ids alphanumeric),
// which keeps the encoding injective.
func BuildChallengeMessage(nonce string, timestamp int64, communityID string) string {
	var b strings.Builder
	b.Grow(len(ChallengePrefix) + len(nonce) + len(communityID) + 24)
	b.WriteString(ChallengePrefix)
	b.WriteByte(':')
	b.WriteString(nonce)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte(':')
	b.WriteString(communityID)
	return b.String()
}

// ValidCommunityID checks the structure of a community identifier
func ValidCommunityID(communityID string) bool {
	return communityIDPattern.MatchString(communityID)
}
