package workaround

import (
	"sync"

	"github.com/mohaanymo/initfix/internal/mp4"
)

// protectedEntryTypes maps each clear sample entry type that can be
// disguised to the protected entry type of its media family.
var protectedEntryTypes = map[mp4.BoxType]mp4.BoxType{
	mp4.TypeDvav: mp4.TypeEncv,
	mp4.TypeDva1: mp4.TypeEncv,
	mp4.TypeDvh1: mp4.TypeEncv,
	mp4.TypeDvhe: mp4.TypeEncv,
	mp4.TypeDvc1: mp4.TypeEncv,
	mp4.TypeDvi1: mp4.TypeEncv,
	mp4.TypeHev1: mp4.TypeEncv,
	mp4.TypeHvc1: mp4.TypeEncv,
	mp4.TypeAvc1: mp4.TypeEncv,
	mp4.TypeAvc3: mp4.TypeEncv,

	mp4.TypeAc3:  mp4.TypeEnca,
	mp4.TypeEc3:  mp4.TypeEnca,
	mp4.TypeAc4:  mp4.TypeEnca,
	mp4.TypeMp4a: mp4.TypeEnca,
}

// Sample entry types that already signal encryption.
var encryptedEntryTypes = []mp4.BoxType{mp4.TypeEncv, mp4.TypeEnca}

// cannedSinfFormatOffset locates the frma data_format field inside the
// canned sinf box.
const cannedSinfFormatOffset = 0x10

// cannedSinf is the protection scheme info appended to fake encrypted
// sample entries. The returned slice is shared and must not be modified.
var cannedSinf = sync.OnceValue(func() []byte {
	return []byte{
		// sinf, 80 bytes
		0x00, 0x00, 0x00, 0x50,
		's', 'i', 'n', 'f',

		// frma, 12 bytes
		0x00, 0x00, 0x00, 0x0c,
		'f', 'r', 'm', 'a',
		// data_format, patched with the clear entry type
		0x00, 0x00, 0x00, 0x00,

		// schm, 20 bytes
		0x00, 0x00, 0x00, 0x14,
		's', 'c', 'h', 'm',
		0x00, 0x00, 0x00, 0x00, // version 0, flags 0
		'c', 'e', 'n', 'c',
		0x00, 0x01, 0x00, 0x00, // scheme version 1.0

		// schi, 40 bytes
		0x00, 0x00, 0x00, 0x28,
		's', 'c', 'h', 'i',

		// tenc, 32 bytes
		0x00, 0x00, 0x00, 0x20,
		't', 'e', 'n', 'c',
		0x00, 0x00, 0x00, 0x00, // version 0, flags 0
		0x00, 0x00, // reserved
		0x01, // default_isProtected
		0x08, // default_Per_Sample_IV_Size
		// default_KID
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
})
