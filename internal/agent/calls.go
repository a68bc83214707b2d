package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/pushclaw/internal/history"
	"github.com/nextlevelbuilder/pushclaw/internal/present"
)

// chunkDump is the shared chunking shape of the two dump paths.
func chunkDump(header, cont, empty string, entries []string) []string {
	return present.Chunker{
		Header:       header,
		Continuation: func(int) string { return cont },
		Empty:        empty,
	}.Chunk(entries)
}

// Safety caps on the dump paths; the full history stays in the store.
const (
	maxCallLogDump = 100
	maxContactDump = 200
)

// Android CallLog.Calls type constants.
var callTypeNames = map[int]string{
	1: "Incoming",
	2: "Outgoing",
	3: "Missed",
	4: "Voicemail",
	5: "Rejected",
	6: "Blocked",
	7: "Externally Answered",
}

func callTypeName(t int) string {
	if name, ok := callTypeNames[t]; ok {
		return name
	}
	return "Other"
}

// dumpCallLogs syncs the call log and reports the newest entries.
func (a *Agent) dumpCallLogs(ctx context.Context) ([]Message, error) {
	a.SyncCallLog(ctx)

	calls := a.callLog.List(ctx, history.CallOwner)
	if len(calls) > maxCallLogDump {
		calls = calls[:maxCallLogDump]
	}

	entries := make([]string, 0, len(calls))
	for i, c := range calls {
		name := c.Name
		if name == "" {
			name = "No Name"
		}
		entries = append(entries, fmt.Sprintf("%d. %s\n  Number: %s\n  Type: %s\n  Date: %s\n  Duration: %d sec\n\n",
			i+1, name, c.Number, callTypeName(c.Type), formatMillis(c.Date), c.Duration))
	}

	chunks := chunkDump("📞 Call Logs:\n\n", "Cont'd Call Logs:\n\n", "No call logs found.", entries)
	msgs := make([]Message, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, Message{Text: c})
	}
	return msgs, nil
}

// dumpContacts reports the address book.
func (a *Agent) dumpContacts(ctx context.Context) ([]Message, error) {
	if a.contacts == nil {
		return []Message{{Text: "Unable to access contacts."}}, nil
	}
	contacts, err := a.contacts.Contacts(ctx)
	if err != nil {
		return []Message{{Text: fmt.Sprintf("Failed to retrieve contacts: %v", err)}}, nil
	}
	if len(contacts) > maxContactDump {
		contacts = contacts[:maxContactDump]
	}

	entries := make([]string, 0, len(contacts))
	for i, c := range contacts {
		name := c.Name
		if name == "" {
			name = "No Name"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d. %s", i+1, name)
		if len(c.Numbers) > 0 {
			fmt.Fprintf(&sb, "\n  Numbers: %s", strings.Join(c.Numbers, ", "))
		}
		sb.WriteString("\n\n")
		entries = append(entries, sb.String())
	}

	chunks := chunkDump("👥 Contacts:\n\n", "Cont'd Contacts:\n\n", "No contacts found.", entries)
	msgs := make([]Message, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, Message{Text: c})
	}
	return msgs, nil
}
