package pymod

import (
	"os"
	"path/filepath"
	"testing"

	"ftr/internal/bench"
	"ftr/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const todoTests = `# Copyright (c) 2015, Frappe Technologies
import unittest
import frappe
from frappe.tests import IntegrationTestCase, UnitTestCase
from frappe.tests.utils import (
	make_test_records,  # noqa
	change_settings as settings,
)

EXTRA_TEST_RECORD_DEPENDENCIES = ["User"]
IGNORE_TEST_RECORD_DEPENDENCIES = ["Role"]

test_records = [
	{"doctype": "ToDo", "description": "_Test ToDo 1"},
	{"doctype": "ToDo", "description": "_Test ToDo 2", "docstatus": 0},
]

test_ignore_exceptions = [frappe.DuplicateEntryError]

HELP = """
class NotAClass(TestCase):
	def test_hidden(self):
		pass
"""


def _make_test_records(verbose=None):
	return []


class UnitTestToDo(UnitTestCase):
	"""Unit tests for ToDo."""

	def test_defaults(self):
		def test_nested():
			pass

	def helper(self):
		pass


class TestToDo(
	IntegrationTestCase,
):
	@classmethod
	def setUpClass(cls):
		super().setUpClass()

	def test_assign(self):
		pass

	async def test_async(self):
		pass
`

func TestParseSource(t *testing.T) {
	m := ParseSource(todoTests)

	require.Len(t, m.Classes, 2)
	unit := m.Classes[0]
	assert.Equal(t, "UnitTestToDo", unit.Name)
	assert.Equal(t, []string{"UnitTestCase"}, unit.Bases)
	assert.Equal(t, []string{"test_defaults"}, unit.Methods)

	integration := m.Classes[1]
	assert.Equal(t, "TestToDo", integration.Name)
	assert.Equal(t, []string{"IntegrationTestCase"}, integration.Bases)
	assert.Equal(t, []string{"test_assign", "test_async"}, integration.Methods)

	assert.Equal(t, Import{Module: "frappe.tests", Name: "IntegrationTestCase"}, m.Imports["IntegrationTestCase"])
	assert.Equal(t, Import{Module: "frappe.tests.utils", Name: "change_settings"}, m.Imports["settings"])
	assert.Equal(t, Import{Module: "frappe.tests.utils", Name: "make_test_records"}, m.Imports["make_test_records"])
	assert.Equal(t, Import{Module: "unittest"}, m.Imports["unittest"])

	assert.True(t, m.MakesTestRecords())
}

func TestModule_Attributes(t *testing.T) {
	m := ParseSource(todoTests)

	deps, err := m.RecordDependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, deps)

	ignored, err := m.IgnoredDependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"Role"}, ignored)

	exceptions, err := m.IgnoredExceptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"DuplicateEntryError"}, exceptions)

	records, ok, err := m.TestRecords()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, "_Test ToDo 2", records[1].String("description"))
}

func TestModule_LegacyAttributes(t *testing.T) {
	m := ParseSource(`test_dependencies = ("Company", "Item")
test_ignore = "Account"
test_records = frappe.get_test_records("Item")
`)
	deps, err := m.RecordDependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"Company", "Item"}, deps)

	ignored, err := m.IgnoredDependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"Account"}, ignored)

	_, ok, err := m.TestRecords()
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrNotLiteral)
	assert.False(t, m.MakesTestRecords())
}

func TestModule_BothDependencyLists(t *testing.T) {
	m := ParseSource(`EXTRA_TEST_RECORD_DEPENDENCIES = ["Item", "Warehouse"]
test_dependencies = ["Company", "Item"]
IGNORE_TEST_RECORD_DEPENDENCIES = ["Account"]
test_ignore = ["Cost Center"]
`)
	deps, err := m.RecordDependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Warehouse", "Company"}, deps)

	ignored, err := m.IgnoredDependencies()
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Cost Center"}, ignored)

	none := ParseSource("import frappe\n")
	deps, err = none.RecordDependencies()
	require.NoError(t, err)
	assert.Nil(t, deps)
}

func TestModule_ResolveRelative(t *testing.T) {
	m := &Module{Name: "erpnext.stock.doctype.item.test_item"}
	tests := []struct {
		in, want string
	}{
		{"frappe.tests", "frappe.tests"},
		{".item", "erpnext.stock.doctype.item.item"},
		{"..warehouse.test_warehouse", "erpnext.stock.doctype.warehouse.test_warehouse"},
		{"...", "erpnext.stock"},
	}
	for _, tt := range tests {
		got, err := m.ResolveRelative(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	pkg := &Module{Name: "erpnext.tests", IsPackage: true}
	got, err := pkg.ResolveRelative(".utils")
	require.NoError(t, err)
	assert.Equal(t, "erpnext.tests.utils", got)

	_, err = (&Module{}).ResolveRelative(".x")
	assert.Error(t, err)
}

func writeModule(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, "apps", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoader_TestClasses(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "shop/shop/__init__.py", "")
	writeModule(t, root, "shop/shop/tests/__init__.py", "from .utils import ShopTestCase\n")
	writeModule(t, root, "shop/shop/tests/utils.py", `from frappe.tests import IntegrationTestCase

class ShopTestCase(IntegrationTestCase):
	def test_shared(self):
		pass
`)
	writeModule(t, root, "shop/shop/tests/test_cart.py", `import unittest
from shop.tests import ShopTestCase
from . import utils


class TestCart(ShopTestCase):
	def test_add(self):
		pass


class TestPricing(unittest.TestCase):
	def test_round(self):
		pass


class TestViaModule(utils.ShopTestCase):
	def test_module(self):
		pass


class TestUnknown(SomethingElse):
	def test_guess(self):
		pass


class Helper:
	def test_not_a_case(self):
		pass


class TestEmpty(unittest.TestCase):
	pass
`)

	loader := NewLoader(bench.NewLayout(root))
	m, err := loader.Load("shop.tests.test_cart")
	require.NoError(t, err)

	classes, err := loader.TestClasses(m)
	require.NoError(t, err)
	require.Len(t, classes, 4)

	assert.Equal(t, TestClass{Name: "TestCart", Category: domain.CategoryIntegration, Methods: []string{"test_add", "test_shared"}}, classes[0])
	assert.Equal(t, TestClass{Name: "TestPricing", Category: domain.CategoryUnit, Methods: []string{"test_round"}}, classes[1])
	assert.Equal(t, TestClass{Name: "TestViaModule", Category: domain.CategoryIntegration, Methods: []string{"test_module", "test_shared"}}, classes[2])
	assert.Equal(t, TestClass{Name: "TestUnknown", Category: domain.CategoryUnit, Methods: []string{"test_guess"}}, classes[3])

	assert.True(t, loader.Exists("shop.tests.utils"))
	assert.False(t, loader.Exists("shop.tests.missing"))
}
