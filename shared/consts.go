package shared

const (
	// LabelLength is the length of a label in bytes.
	LabelLength = 16

	// NoncesPerGroup is the number of nonces sharing one proof-of-work and one group cipher.
	NoncesPerGroup = 16

	// OwnerReadWriteExec is a standard owner read / write / exec file permission.
	OwnerReadWriteExec = 0o700

	// OwnerReadWrite is a standard owner read / write file permission.
	OwnerReadWrite = 0o600
)
