package state

import "sort"

// Leaderboard returns the ranked snapshot of the room's roster, sorted by
// P&L descending. The sort is stable so ties keep their prior order.
func (r *Room) Leaderboard() []LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaderboardLocked()
}

func (r *Room) leaderboardLocked() []LeaderboardEntry {
	board := make([]LeaderboardEntry, 0, len(r.Players))
	for _, p := range r.Players {
		board = append(board, LeaderboardEntry{
			ID:      p.ID,
			Name:    p.Name,
			Balance: p.Balance,
			PnL:     p.PnL,
			ROI:     p.ROI,
			Trades:  p.Trades,
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].PnL > board[j].PnL
	})
	return board
}
