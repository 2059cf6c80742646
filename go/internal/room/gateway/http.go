package gateway

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/rs/zerolog/log"
)

const roomCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
const roomCodeLength = 6

// generateRoomCode returns a short join code, skipping easily-confused
// characters.
func generateRoomCode() (string, error) {
	code := make([]byte, roomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = roomCodeCharset[n.Int64()]
	}
	return string(code), nil
}

// HandleCreateRoom provisions a room and returns its join code. Rooms are
// also auto-created on join, so this only exists for hosts that want a code
// before sharing it.
func (s *Service) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code, err := generateRoomCode()
	if err != nil {
		http.Error(w, "failed to generate room code", http.StatusInternalServerError)
		return
	}
	if err := s.engine.CreateRoom(code); err != nil {
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}

	log.Info().Str("room_id", code).Msg("room provisioned over HTTP")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		RoomID string `json:"room_id"`
	}{RoomID: code})
}

// HandleStats returns connection and room statistics.
func (s *Service) HandleStats(w http.ResponseWriter, r *http.Request) {
	total, roomCounts := s.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		TotalConnections int            `json:"total_connections"`
		ActiveRooms      int            `json:"active_rooms"`
		RoomConnections  map[string]int `json:"room_connections"`
	}{
		TotalConnections: total,
		ActiveRooms:      s.engine.RoomCount(),
		RoomConnections:  roomCounts,
	})
}
