// Package status defines the status document published to a controlling
// process and the commands it may send back.
//
// Wire shapes:
//
//	{"Name":"AutoConnect","Version":"v1.0.0","Log":[...],
//	 "Result":[{"Name":"eth0","Index":2,"Description":"...",
//	            "AddressList":["10.1.1.5"],"CameraNameList":["DeviceA"]}],
//	 "Command":"Stop"}
//
//	{"Command":"Stop"}
//	{"SetIP":true,"index":"0"}
//
// Result and Command are omitted when empty. Encoding uses sonic.
package status
