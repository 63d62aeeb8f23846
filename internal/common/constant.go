package common

import "time"

// JournalScope is the only scope a journal access token may carry.
const JournalScope = "journal"

// AccessTokenTTL is the fixed lifetime of a journal access token.
const AccessTokenTTL = 15 * time.Minute

// DateLayout is the wire and storage format of entry dates.
const DateLayout = "2006-01-02"
