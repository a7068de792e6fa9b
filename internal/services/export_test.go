package services

func DummyHash(service *ServiceUser) []byte {
	return service.dummyHash
}
