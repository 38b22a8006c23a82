package firestore

// CounterErrorForTest exposes counterError for testing purposes
func CounterErrorForTest(err error, orgID, prefix string, attempts int) error {
	return counterError(err, orgID, prefix, attempts)
}
