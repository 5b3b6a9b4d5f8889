package reconciler

import "github.com/hoken-app/insurance-portal/pkg/sdk"

// merge builds the authoritative list from a fetched list. An entry is read
// when the server list says so, when its id is in readIDs, or when it was
// read locally this session; nothing is ever downgraded to unread. Duplicate
// ids keep the position of their first occurrence and the content of the
// last.
func merge(list []sdk.Notification, readIDs []string, localRead map[string]struct{}) []sdk.Notification {
	read := make(map[string]struct{}, len(readIDs)+len(localRead))
	for _, id := range readIDs {
		read[id] = struct{}{}
	}
	for id := range localRead {
		read[id] = struct{}{}
	}

	out := make([]sdk.Notification, 0, len(list))
	index := make(map[string]int, len(list))

	for _, n := range list {
		if _, ok := read[n.MessageID]; ok {
			n.IsRead = true
		}

		if i, ok := index[n.MessageID]; ok {
			n.IsRead = n.IsRead || out[i].IsRead
			out[i] = n
			continue
		}

		index[n.MessageID] = len(out)
		out = append(out, n)
	}

	return out
}
