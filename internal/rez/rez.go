package rez

// Rez compiles the textual Rez sidecar source into a binary resource
// fork, the direction classicvirtio's rez.c performs against a target
// fid via ninebuf. Here it operates purely in memory; the three-file
// multifork strategy is responsible for reading the sidecar text and
// writing the result to the .rdump fid.
func Rez(src string) ([]byte, error) {
	resources, err := ParseText(src)
	if err != nil {
		return nil, err
	}
	return EncodeBinary(resources), nil
}

// DeRez decompiles a binary resource fork into its textual Rez form,
// the direction classicvirtio's derez.c performs.
func DeRez(binary []byte) (string, error) {
	resources, err := DecodeBinary(binary)
	if err != nil {
		return "", err
	}
	return EmitText(resources), nil
}
