package events

func IsName(name Name) Predicate {
	return func(evt Event) bool {
		if evt == nil {
			return false
		}

		return evt.Name() == name
	}
}

func PresenceUpdatedFor(userID string) Predicate {
	return func(evt Event) bool {
		update, ok := evt.(PresenceUpdated)
		if !ok {
			return false
		}

		if userID == "" {
			return true
		}

		return update.UserID == userID
	}
}

func PresenceStatusIs(userID, status string) Predicate {
	return func(evt Event) bool {
		update, ok := evt.(PresenceUpdated)
		if !ok {
			return false
		}

		if userID != "" && update.UserID != userID {
			return false
		}

		return update.Status == status
	}
}

func WidgetStateIs(subject, state string) Predicate {
	return func(evt Event) bool {
		change, ok := evt.(WidgetStateChanged)
		if !ok {
			return false
		}

		if subject != "" && change.Subject != subject {
			return false
		}

		return change.To == state
	}
}

func HeartbeatSentFor(userID string) Predicate {
	return func(evt Event) bool {
		hb, ok := evt.(HeartbeatSent)
		if !ok {
			return false
		}

		if userID == "" {
			return true
		}

		return hb.UserID == userID
	}
}

func ChannelIgnoredOp(op int) Predicate {
	return func(evt Event) bool {
		ignored, ok := evt.(ChannelIgnored)
		if !ok {
			return false
		}

		return ignored.Op == op
	}
}

func Any(predicates ...Predicate) Predicate {
	return func(evt Event) bool {
		for _, predicate := range predicates {
			if predicate == nil {
				continue
			}

			if predicate(evt) {
				return true
			}
		}

		return false
	}
}
