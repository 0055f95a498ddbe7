package utils_test

import (
	"strconv"
	"testing"

	"github.com/ffportal/ffsubmit/pkg/cmp"
	"github.com/ffportal/ffsubmit/pkg/utils"
)

func TestMap(t *testing.T) {
	actual := utils.Map([]int{1, 2, 3}, strconv.Itoa)
	if !cmp.SliceEq(actual, []string{"1", "2", "3"}) {
		t.Errorf("Map: %v", actual)
	}
	if actual := utils.Map([]int{}, strconv.Itoa); len(actual) != 0 {
		t.Errorf("Map of empty: %v", actual)
	}
}
