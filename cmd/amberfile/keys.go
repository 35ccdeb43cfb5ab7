package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/bernedogit/amber-sub001/internal/keystore"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// openRing loads the configured key ring, prompting for its password
// only if the path is password-protected (".cha" suffixed). A missing
// ring file is not an error: an empty ring is returned so genkey can
// create the file on first Save.
func openRing() (*keystore.Ring, []byte, error) {
	path := theApp.cfg.Keystore.Path

	var password []byte
	if strings.HasSuffix(path, ".cha") {
		if _, err := os.Stat(path); err == nil {
			pw, err := promptPassword(fmt.Sprintf("Password for %s", path), false)
			if err != nil {
				return nil, nil, err
			}
			password = pw
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &keystore.Ring{}, password, nil
	}

	ring, report, err := keystore.Load(path, password)
	if err != nil {
		return nil, nil, fmt.Errorf("loading key ring %s: %w", path, err)
	}
	for _, rerr := range report.Rejected {
		theApp.log.Warn("rejected key ring record", "error", rerr)
	}
	if len(report.Rejected) > 0 {
		theApp.met.RecordKeystoreRejected(len(report.Rejected))
	}
	theApp.met.SetKeystoreKeysLoaded(len(ring.Keys))
	return ring, password, nil
}

// saveRing persists ring back to its configured path, reusing password
// for an encrypted ring (prompting to set one the first time a ".cha"
// ring is created).
func saveRing(ring *keystore.Ring, password []byte) error {
	path := theApp.cfg.Keystore.Path
	if strings.HasSuffix(path, ".cha") && password == nil {
		pw, err := promptPassword(fmt.Sprintf("Set password for %s", path), true)
		if err != nil {
			return err
		}
		password = pw
	}

	rng, err := primitives.NewKeyedRandom(password)
	if err != nil {
		return err
	}
	if err := ring.Save(path, password, theApp.cfg.Crypto.BlockSize, theApp.cfg.Crypto.BlockFiller, theApp.cfg.Crypto.Shifts, rng); err != nil {
		return fmt.Errorf("saving key ring %s: %w", path, err)
	}
	return nil
}

// resolveRecipients matches selectors (hex prefixes or whole-word
// name/alias matches, per keystore.Ring.Select) against ring and
// returns each match's X25519 public key, the one internal/header
// needs to address a recipient.
func resolveRecipients(ring *keystore.Ring, selectors []string) ([]primitives.Key, error) {
	if len(selectors) == 0 {
		selectors = theApp.cfg.Keystore.DefaultRecipients
	}
	if len(selectors) == 0 {
		return nil, fmt.Errorf("no recipients given (use -r/--recipient or keystore.default_recipients)")
	}

	matches := ring.Select(selectors)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no key in %s matches %v", theApp.cfg.Keystore.Path, selectors)
	}

	out := make([]primitives.Key, len(matches))
	for i, k := range matches {
		out[i] = k.DHPub
	}
	return out, nil
}

// resolveIdentity selects exactly one key from ring to act as the
// local signing/encrypting identity, erroring if selector is ambiguous
// or its secret key isn't available.
func resolveIdentity(ring *keystore.Ring, selector string) (keystore.Key, error) {
	k, err := ring.SelectOne(selector)
	if err != nil {
		return keystore.Key{}, fmt.Errorf("selecting identity %q: %w", selector, err)
	}
	if !k.SecretAvail {
		return keystore.Key{}, fmt.Errorf("identity %q has no secret key available", selector)
	}
	return k, nil
}
