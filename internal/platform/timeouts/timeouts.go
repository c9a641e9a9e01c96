// Package timeouts defines shared timeout defaults for the students CLI.
package timeouts

import "time"

// Command caps a single CLI invocation, store open included.
const Command = 30 * time.Second

// OTelShutdown limits how long span export may delay process exit.
const OTelShutdown = 5 * time.Second
