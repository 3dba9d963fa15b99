//go:build debug_mem_utils

package memutils

// DebugEnabled reports whether memutils was built with the debug_mem_utils build tag
const DebugEnabled = true

// PoisonByte is the pattern PoisonPayload writes across freed payloads
const PoisonByte byte = 0xDD

// PoisonPayload overwrites a freed payload with an easy-to-identify pattern so that reads through
// a stale slice stand out. This method no-ops unless the debug_mem_utils build tag is present.
func PoisonPayload(data []byte) {
	for i := range data {
		data[i] = PoisonByte
	}
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
