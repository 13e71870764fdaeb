package mpt

import (
	"errors"
	"fmt"
)

// lcp returns the longest common prefix of a and b.
// Note: it does no allocations.
func lcp(a, b []byte) []byte {
	return a[:lcpLen(a, b)]
}

func lcpLen(a, b []byte) int {
	if len(a) < len(b) {
		return lcpLen(b, a)
	}

	var i int
	for i = 0; i < len(b); i++ {
		if a[i] != b[i] {
			break
		}
	}

	return i
}

// splitPath splits path for a branch node.
func splitPath(path []byte) (byte, []byte) {
	return path[0], path[1:]
}

// concat returns a fresh slice containing all the given parts. Node paths
// may share underlying arrays, so they're never appended to in place.
func concat(parts ...[]byte) []byte {
	var n int
	for i := range parts {
		n += len(parts[i])
	}
	res := make([]byte, 0, n)
	for i := range parts {
		res = append(res, parts[i]...)
	}
	return res
}

// toNibbles mangles path by splitting every byte into 2 containing low- and high- 4-byte part.
func toNibbles(path []byte) []byte {
	result := make([]byte, len(path)*2)
	for i := range path {
		result[i*2] = path[i] >> 4
		result[i*2+1] = path[i] & 0x0F
	}
	return result
}

// fromNibbles performs operation opposite to toNibbles and does no path validity checks.
func fromNibbles(path []byte) []byte {
	result := make([]byte, len(path)/2)
	for i := range result {
		result[i] = path[2*i]<<4 + path[2*i+1]
	}
	return result
}

// Hex-prefix flag bits stored in the high nibble of the first compact byte.
const (
	oddFlag      = 1
	terminalFlag = 2
)

// compactEncode encodes nibble path using hex-prefix encoding. Terminal flag
// distinguishes leaf paths from extension ones.
func compactEncode(path []byte, terminal bool) []byte {
	var flag byte
	if terminal {
		flag = terminalFlag
	}
	buf := make([]byte, len(path)/2+1)
	if len(path)%2 == 1 {
		flag |= oddFlag
		buf[0] = flag<<4 | path[0]
		path = path[1:]
	} else {
		buf[0] = flag << 4
	}
	for i := 0; i < len(path); i += 2 {
		buf[i/2+1] = path[i]<<4 | path[i+1]
	}
	return buf
}

var errInvalidCompactPath = errors.New("invalid hex-prefix path")

// compactDecode decodes hex-prefix encoded path into nibbles.
func compactDecode(buf []byte) ([]byte, bool, error) {
	if len(buf) == 0 {
		return nil, false, errInvalidCompactPath
	}
	flag := buf[0] >> 4
	if flag > oddFlag|terminalFlag {
		return nil, false, fmt.Errorf("%w: flag %d", errInvalidCompactPath, flag)
	}
	var path []byte
	if flag&oddFlag != 0 {
		path = make([]byte, 0, 2*len(buf)-1)
		path = append(path, buf[0]&0x0F)
	} else {
		if buf[0]&0x0F != 0 {
			return nil, false, fmt.Errorf("%w: non-zero padding", errInvalidCompactPath)
		}
		path = make([]byte, 0, 2*len(buf)-2)
	}
	path = append(path, toNibbles(buf[1:])...)
	return path, flag&terminalFlag != 0, nil
}
