// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package recovery

import (
	"github.com/scalelfs/rollforward/node"
)

// NameMax is the maximum on-disk name length, matching f3fs's NAME_LEN.
const NameMax = 255

// hashSize is the width of a precomputed casefold hash stored after the
// raw name bytes when a directory is both encrypted and casefolded.
const hashSize = 8

// ReconstructFilename rebuilds a lookup-ready filename from a raw inode
// block (spec.md §4.A, component A). dirIno is the parent directory
// handle's ino.
func ReconstructFilename(codec FilenameCodec, dirIno uint32, raw *node.RawInode) (FileName, error) {
	if int(raw.NameLen) > NameMax {
		return FileName{}, newErr(KindNameTooLong, "filename.reconstruct", nil)
	}

	encrypted := codec.DirEncrypted(dirIno)
	casefolded := codec.DirCasefolded(dirIno)

	switch {
	case encrypted && casefolded:
		if int(raw.NameLen)+hashSize > NameMax {
			return FileName{}, newErr(KindNameTooLong, "filename.reconstruct", nil)
		}
		hashBytes := raw.Name[raw.NameLen : int(raw.NameLen)+hashSize]
		return FileName{
			DiskName:  append([]byte(nil), raw.Name[:raw.NameLen]...),
			Hash:      bytesToUint64(hashBytes),
			Encrypted: true,
		}, nil

	case casefolded:
		folded := codec.Casefold(raw.Name[:raw.NameLen])
		return FileName{
			DiskName: append([]byte(nil), raw.Name[:raw.NameLen]...),
			UsrFname: append([]byte(nil), raw.Name[:raw.NameLen]...),
			Hash:     codec.Hash(dirIno, folded),
		}, nil

	case !encrypted:
		name := append([]byte(nil), raw.Name[:raw.NameLen]...)
		return FileName{
			DiskName: name,
			UsrFname: name,
			Hash:     codec.Hash(dirIno, name),
		}, nil

	default: // encrypted, not casefolded
		return FileName{
			DiskName:  append([]byte(nil), raw.Name[:raw.NameLen]...),
			Encrypted: true,
		}, nil
	}
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
