package canopen

// SDOTransfer reads and writes dictionary entries in their display form.
// It keeps no state between calls.
type SDOTransfer struct {
	Dictionary Dictionary
	Client     SDOReadWriter
}

func NewSDOTransfer(dictionary Dictionary, client SDOReadWriter) *SDOTransfer {
	return &SDOTransfer{Dictionary: dictionary, Client: client}
}

// Upload reads the entry at addr from the node and decodes it.
func (t *SDOTransfer) Upload(addr DictionaryAddress) (string, error) {
	entry, err := t.Dictionary.Lookup(addr)
	if err != nil {
		return "", err
	}

	data, err := t.Client.Read(entry.Index, entry.SubIndex)
	if err != nil {
		return "", err
	}
	return Decode(data, entry.Meta()), nil
}

// Download encodes text for the entry at addr and writes it to the node.
// Nothing is sent when text does not parse.
func (t *SDOTransfer) Download(addr DictionaryAddress, text string) error {
	entry, err := t.Dictionary.Lookup(addr)
	if err != nil {
		return err
	}

	data, err := Encode(text, entry.Meta())
	if err != nil {
		return err
	}
	return t.Client.Write(entry.Index, entry.SubIndex, false, data)
}
