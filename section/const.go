package section

// BlockIndexEntrySize is the fixed size in bytes of an encoded BlockIndexEntry.
const BlockIndexEntrySize = 32
