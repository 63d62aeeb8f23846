// Package cli provides the journal command-line client.
//
// Commands:
//
//	setup                 set or change the journal PIN
//	unlock                verify the PIN and keep the journal token
//	lock                  forget the journal token
//	entries list          list entry metadata, optionally by date range
//	entries get <id>      print one decrypted entry
//	entries create        write a new entry
//	entries update <id>   replace an entry's text
//	entries delete <id>   delete an entry
//
// The token from unlock is stored in the session file and reused until it
// expires; entry commands ask for the PIN again when it is missing.
package cli
