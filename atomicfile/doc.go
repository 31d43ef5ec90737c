/*
To replace the content of a file in a robust way we should:

- handle error returned by `Write()` and `Close()`

- never leave a partially written destination file

- never let readers observe a half-written file

Package atomicfile writes to a temporary file in the destination directory
and renames it over the destination in `Close()`. Readers see either the
old or the new content.

	func saveBatch(filePath string, data []byte) error {
		w, err := atomicfile.New(filePath)
		if err != nil {
			return err
		}
		// calling Close() twice is a no-op
		defer w.Close()

		_, err = w.Write(data)
		if err != nil {
			return err
		}
		return w.Close()
	}

For the common case use WriteFile.
*/
package atomicfile
