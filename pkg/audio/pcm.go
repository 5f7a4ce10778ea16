package audio

import "time"

// Int16sToBytes converts PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to PCM samples. A trailing odd
// byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Duration returns the play time of n bytes of mono 16-bit PCM at rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	samples := int64(n / 2)
	return time.Duration(samples * int64(time.Second) / int64(rate))
}
