package protocol

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomBytes(rng *rand.Rand, maxLen int) []byte {
	b := make([]byte, rng.Intn(maxLen+1))
	rng.Read(b)
	return b
}

func TestFuzzParseFrame(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := randomBytes(rng, 300)
		if rng.Intn(2) == 0 && len(data) >= 2 {
			data[0], data[1] = SyncByte0, SyncByte1
		}
		f, err := ParseFrame(data)
		if err == nil && f == nil {
			t.Fatalf("round %d: nil frame without error for % X", i, data)
		}
		if _, _, err := ParseResponse(data); err != nil && !IsType(err, ErrTypeLength) &&
			!IsType(err, ErrTypeInvalidFraming) && !IsType(err, ErrTypeCRCMismatch) {
			t.Fatalf("round %d: unexpected error type %v", i, err)
		}
	}
}

func TestFuzzBuildParseRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		payload := randomBytes(rng, MaxPayloadSize)
		msgType := MessageType(rng.Intn(256))
		data, err := BuildFrame(msgType, payload)
		if err != nil {
			t.Fatalf("round %d: BuildFrame() error = %v", i, err)
		}
		f, err := ParseFrame(data)
		if err != nil {
			t.Fatalf("round %d: ParseFrame() error = %v", i, err)
		}
		if f.RawType != byte(msgType) || len(f.Payload) != len(payload) {
			t.Fatalf("round %d: frame = %s, want type 0x%02X len %d", i, f, byte(msgType), len(payload))
		}
	}
}

func TestFuzzDecoder(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	d := NewDecoder()

	for i := 0; i < rounds; i++ {
		chunk := randomBytes(rng, 64)
		if rng.Intn(4) == 0 {
			resp, _ := BuildResponse(MessageTypeSetProbeID.Response(), true, nil)
			chunk = append(chunk, resp...)
		}
		d.Feed(chunk)
		if d.Buffered() > 2*(ResponseHeaderSize+MaxPayloadSize)+64 {
			t.Fatalf("round %d: decoder holding %d bytes", i, d.Buffered())
		}
	}
}

func TestFuzzParseAdvertising(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := randomBytes(rng, 32)
		adv, err := ParseAdvertising(data)
		if len(data) < AdvertisingMinSize {
			if !IsType(err, ErrTypeLength) {
				t.Fatalf("round %d: %d bytes gave %v, want length error", i, len(data), err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("round %d: ParseAdvertising() error = %v", i, err)
		}
		if !adv.ID.Valid() {
			t.Fatalf("round %d: id %d out of range", i, adv.ID)
		}
	}
}

func TestFuzzParseStatus(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := randomBytes(rng, StatusFullSize+8)
		s, err := ParseStatus(data)
		if len(data) < StatusMinSize {
			if !IsType(err, ErrTypeLength) {
				t.Fatalf("round %d: %d bytes gave %v, want length error", i, len(data), err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("round %d: ParseStatus() error = %v", i, err)
		}
		if s.Prediction.State > 7 {
			t.Fatalf("round %d: prediction state %d out of range", i, s.Prediction.State)
		}
		if _, err := ParseStatus(s.Bytes()); err != nil {
			t.Fatalf("round %d: re-encoded status failed: %v", i, err)
		}
	}
}
