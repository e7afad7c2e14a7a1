package ws

type IHub interface {
	Run()
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)
	Subscribe(userId, roomId string)
	Unsubscribe(userId, roomId string)
	BroadcastToRoom(roomId string, message []byte)
	SendToClient(userId string, message []byte)
	IsConnected(userId string) bool
	GetClientCount() int
	SetOnClientUnregister(callback func(client *UserClient) error)
}
