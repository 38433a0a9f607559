package history

// Group is a run of consecutive entries sharing the same subject, source,
// and actor. Readers render a group as a single activity line.
type Group struct {
	Subject   Subject
	Source    Source
	ActorType ActorType
	ActorID   string
	Entries   []Entry
}

// GroupEntries folds an ordered entry list into display groups. Entries are
// expected in ascending sequence order; a new group starts whenever the
// subject, source, or actor changes.
func GroupEntries(entries []Entry) []Group {
	var groups []Group
	for _, entry := range entries {
		if len(groups) > 0 {
			last := &groups[len(groups)-1]
			if last.Subject == entry.Subject &&
				last.Source == entry.Source &&
				last.ActorType == entry.ActorType &&
				last.ActorID == entry.ActorID {
				last.Entries = append(last.Entries, entry)
				continue
			}
		}
		groups = append(groups, Group{
			Subject:   entry.Subject,
			Source:    entry.Source,
			ActorType: entry.ActorType,
			ActorID:   entry.ActorID,
			Entries:   []Entry{entry},
		})
	}
	return groups
}
