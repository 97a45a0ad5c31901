package verify

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// coseSign1 is the COSE_Sign1 envelope wrapping a Nitro attestation document.
type coseSign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[string]interface{}
	Payload     []byte
	Signature   []byte
}

// nitroDocument is the subset of the Nitro attestation document this verifier
// inspects.
type nitroDocument struct {
	ModuleID    string         `cbor:"module_id"`
	Digest      string         `cbor:"digest"`
	Timestamp   uint64         `cbor:"timestamp"`
	PCRs        map[int][]byte `cbor:"pcrs"`
	Certificate []byte         `cbor:"certificate"`
}

// NitroVerifier validates AWS Nitro attestation documents: the COSE_Sign1
// envelope, the document fields, the PCR0 binding to the attested codehash,
// and the P-384 signature under the document's certificate.
type NitroVerifier struct{}

// NewNitroVerifier creates a Nitro attestation verifier.
func NewNitroVerifier() *NitroVerifier {
	return &NitroVerifier{}
}

// Verify checks the attestation's document and signature.
func (n *NitroVerifier) Verify(att Attestation) error {
	raw, err := base64.StdEncoding.DecodeString(att.AttestationDocument)
	if err != nil {
		return fmt.Errorf("failed to decode attestation document: %w", err)
	}

	var msg coseSign1
	if err := cbor.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to parse COSE_Sign1 envelope: %w", err)
	}
	if err := checkCOSEHeader(msg); err != nil {
		return err
	}

	var doc nitroDocument
	if err := cbor.Unmarshal(msg.Payload, &doc); err != nil {
		return fmt.Errorf("failed to parse attestation document payload: %w", err)
	}
	if err := checkNitroDocument(doc, att.Codehash); err != nil {
		return err
	}

	return verifyCOSESignature(msg, doc.Certificate)
}

func checkCOSEHeader(msg coseSign1) error {
	var protected map[int]int
	if err := cbor.Unmarshal(msg.Protected, &protected); err != nil {
		return fmt.Errorf("failed to parse protected header: %w", err)
	}
	alg, ok := protected[1]
	if !ok {
		return errors.New("missing algorithm in protected header")
	}
	// -35 is ES384, the only algorithm the NSM signs with.
	if alg != -35 {
		return fmt.Errorf("unexpected COSE algorithm: %d", alg)
	}
	if len(msg.Payload) == 0 {
		return errors.New("empty COSE payload")
	}
	return nil
}

func checkNitroDocument(doc nitroDocument, codehash string) error {
	if doc.ModuleID == "" {
		return errors.New("missing module_id in attestation document")
	}
	if doc.Timestamp == 0 {
		return errors.New("missing timestamp in attestation document")
	}
	if len(doc.Certificate) == 0 {
		return errors.New("missing certificate in attestation document")
	}
	pcr0, ok := doc.PCRs[0]
	if !ok || len(pcr0) == 0 {
		return errors.New("missing PCR0 in attestation document")
	}
	if hex.EncodeToString(pcr0) != codehash {
		return errors.New("PCR0 does not match attested codehash")
	}
	return nil
}

// verifyCOSESignature checks the P-384 ECDSA signature over the COSE
// Sig_structure using the certificate embedded in the document.
func verifyCOSESignature(msg coseSign1, certBytes []byte) error {
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return fmt.Errorf("failed to parse document certificate: %w", err)
	}
	pubKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("document certificate key is not ECDSA")
	}
	// P-384 signatures are 96 bytes: R and S, 48 bytes each.
	if len(msg.Signature) != 96 {
		return fmt.Errorf("invalid signature length: expected 96 bytes, got %d", len(msg.Signature))
	}
	r := new(big.Int).SetBytes(msg.Signature[:48])
	s := new(big.Int).SetBytes(msg.Signature[48:])

	sigStructure := []any{
		"Signature1",
		msg.Protected,
		[]byte{},
		msg.Payload,
	}
	sigStructureBytes, err := cbor.Marshal(sigStructure)
	if err != nil {
		return fmt.Errorf("failed to serialize signature structure: %w", err)
	}
	digest := sha512.Sum384(sigStructureBytes)

	if !ecdsa.Verify(pubKey, digest[:], r, s) {
		return errors.New("COSE signature verification failed")
	}
	return nil
}
