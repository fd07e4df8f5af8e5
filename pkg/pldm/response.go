// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pldm

import "encoding/binary"

// headerSize is the 3-byte PLDM header preceding every response body,
// per spec.md §6. Its contents (message type, PLDM type, command) are
// filled in by the out-of-scope codec; this package only sizes for it.
const headerSize = 3

// Response is one wire-ready PLDM response message: the codec-owned
// header followed by this package's completion code and, for memory
// commands, a little-endian transferred-length field.
type Response struct {
	InstanceID uint8
	Command    CommandCode
	Completion CompletionCode
	Length     uint32
}

// EncodeMemoryResponse builds the response body for a memory command:
// completion code plus a 4-byte little-endian transferred length, per
// spec.md §6. instanceID and cmd are accepted, not ignored by omission,
// because the codec that stamps the PLDM header (message type, PLDM
// type, command, instance id) is out of scope here — buf[:headerSize]
// is left zeroed as that codec's input, and instanceID/cmd exist on
// this signature so a caller never has to reconstruct them separately
// once that codec lands.
func EncodeMemoryResponse(instanceID uint8, cmd CommandCode, completion CompletionCode, length uint32) []byte {
	buf := make([]byte, headerSize+1+4)
	buf[headerSize] = byte(completion)
	binary.LittleEndian.PutUint32(buf[headerSize+1:], length)
	return buf
}

// EncodeSimpleResponse builds a response body carrying only a completion
// code, used for FILE_ACK, GET_ALERT_STATUS, and similar non-memory
// commands (spec.md §4.4). See EncodeMemoryResponse for why instanceID
// and cmd are parameters despite the header codec being out of scope.
func EncodeSimpleResponse(instanceID uint8, cmd CommandCode, completion CompletionCode) []byte {
	buf := make([]byte, headerSize+1)
	buf[headerSize] = byte(completion)
	return buf
}
