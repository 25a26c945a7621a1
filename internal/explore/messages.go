package explore

import (
	"fmt"

	"github.com/vietnamexplorer/explorer/internal/failure"
)

// Messages shown on the map screen.
const (
	MessageEmptySearch = "Please enter a place name"
	MessageNetwork     = "Network Error: Please check your internet connection and try again."
	MessageNoPOIs      = "No points of interest found in this area"
	MessageTimeout     = "Request timeout: The server took too long to respond. Please check your internet connection."
	MessageGeneric     = "An error occurred while searching. Please try again."
	MessageChatFailed  = "Xin lỗi, đã có lỗi xảy ra. Vui lòng thử lại sau."
	MessageGreeting    = `Xin chào! Tôi có thể giúp bạn tìm địa điểm. Ví dụ: "Tìm quán cơm tấm trong 10km" hoặc "Mình đang ở HCMUS, tìm quán cafe gần đây" hoặc "Tìm địa điểm gần địa chỉ hiện tại"`
)

// step identifies the link of the manual search chain that failed.
type step int

const (
	stepGeocode step = iota
	stepPOI
	stepWeather
)

func (s step) String() string {
	switch s {
	case stepGeocode:
		return "geocode"
	case stepPOI:
		return "poi"
	case stepWeather:
		return "weather"
	default:
		return "unknown"
	}
}

// searchErrorMessage maps a failed chain step to the message shown to the user.
func searchErrorMessage(s step, err error, input string) string {
	switch failure.KindOf(err) {
	case failure.KindValidation:
		if s == stepGeocode {
			return MessageEmptySearch
		}
		return MessageGeneric
	case failure.KindNetworkUnavailable:
		return MessageNetwork
	case failure.KindNotFound:
		switch s {
		case stepGeocode:
			return fmt.Sprintf("Place not found: %q could not be found in Vietnam. Please try another location.", input)
		case stepPOI:
			return MessageNoPOIs
		case stepWeather:
			return MessageGeneric
		}
		return MessageGeneric
	case failure.KindTimeout:
		return MessageTimeout
	default:
		return MessageGeneric
	}
}
