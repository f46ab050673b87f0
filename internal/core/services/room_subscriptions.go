package services

// roomSubscriptions tracks which connections are subscribed to which rooms,
// indexed both ways. Each index is sharded independently.
type roomSubscriptions struct {
	byRoom       *shardedSets
	byConnection *shardedSets
}

func newRoomSubscriptions(shardCount int) *roomSubscriptions {
	return &roomSubscriptions{
		byRoom:       newShardedSets(shardCount),
		byConnection: newShardedSets(shardCount),
	}
}

// subscribe reports whether the connection was not already in the room.
func (s *roomSubscriptions) subscribe(ticketID, connectionID string) bool {
	added := s.byRoom.add(ticketID, connectionID)
	s.byConnection.add(connectionID, ticketID)
	return added
}

func (s *roomSubscriptions) unsubscribe(ticketID, connectionID string) bool {
	removed := s.byRoom.remove(ticketID, connectionID)
	s.byConnection.remove(connectionID, ticketID)
	return removed
}

// drop removes the connection from every room and returns those rooms.
func (s *roomSubscriptions) drop(connectionID string) []string {
	rooms := s.byConnection.take(connectionID)
	for _, ticketID := range rooms {
		s.byRoom.remove(ticketID, connectionID)
	}
	return rooms
}

func (s *roomSubscriptions) roomsOf(connectionID string) []string {
	return s.byConnection.members(connectionID)
}

func (s *roomSubscriptions) subscribersOf(ticketID string) []string {
	return s.byRoom.members(ticketID)
}

func (s *roomSubscriptions) isSubscribed(ticketID, connectionID string) bool {
	return s.byRoom.contains(ticketID, connectionID)
}
